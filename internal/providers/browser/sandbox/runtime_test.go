package sandbox

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// testHost runs scheduled tasks immediately on Flush
type testHost struct {
	posted  [][]byte
	console []LogEntry
	tasks   []func()
}

func (h *testHost) PostToParent(data []byte)                  { h.posted = append(h.posted, data) }
func (h *testHost) Schedule(delay time.Duration, task func()) { h.tasks = append(h.tasks, task) }
func (h *testHost) Console(entry LogEntry)                    { h.console = append(h.console, entry) }

func (h *testHost) Flush() {
	tasks := h.tasks
	h.tasks = nil
	for _, task := range tasks {
		task()
	}
}

const loginPage = `<!DOCTYPE html>
<html><head><title>Login</title></head>
<body>
  <form id="login-form">
    <input id="username" name="username">
    <input id="password" name="password" type="password">
    <button id="login-btn" type="submit">Sign in</button>
  </form>
  <div id="status"></div>
</body></html>`

func newTestRuntime(t *testing.T, markup string) (*Runtime, *Document, *testHost) {
	t.Helper()
	doc, err := Parse(markup)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	host := &testHost{}
	runtime, err := New(DefaultConfig(), doc, host)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(runtime.Close)
	return runtime, doc, host
}

func TestRuntimeExecution(t *testing.T) {
	runtime, _, _ := newTestRuntime(t, loginPage)

	tests := []struct {
		name    string
		script  string
		want    interface{}
		wantErr bool
	}{
		{name: "simple return", script: "42", want: int64(42)},
		{name: "string operations", script: "'hello'.toUpperCase()", want: "HELLO"},
		{name: "document title", script: "document.title", want: "Login"},
		{name: "query missing", script: "document.querySelector('#nope') === null", want: true},
		{name: "syntax error", script: "function (", wantErr: true},
		{name: "empty script", script: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := runtime.Execute(tt.script)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if result.Value != tt.want {
				t.Errorf("Execute() = %v (%T), want %v", result.Value, result.Value, tt.want)
			}
		})
	}
}

func TestRuntimeSecurity(t *testing.T) {
	runtime, _, _ := newTestRuntime(t, loginPage)

	dangerousScripts := []struct {
		name   string
		script string
	}{
		{name: "require blocked", script: "require('fs')"},
		{name: "process blocked", script: "process.exit(1)"},
		{name: "module blocked", script: "module.exports = {}"},
	}

	for _, tt := range dangerousScripts {
		t.Run(tt.name, func(t *testing.T) {
			result, err := runtime.Execute(tt.script)
			if err == nil && result.Value != nil {
				t.Errorf("Dangerous script executed successfully: %v", result.Value)
			}
		})
	}
}

func TestRuntimeTimeout(t *testing.T) {
	doc, err := Parse(loginPage)
	if err != nil {
		t.Fatal(err)
	}
	runtime, err := New(Config{Timeout: 50 * time.Millisecond}, doc, &testHost{})
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	defer runtime.Close()

	_, err = runtime.Execute("while (true) {}")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected timeout error, got %v", err)
	}

	// the VM stays usable after an interrupt
	result, err := runtime.Execute("1 + 1")
	if err != nil {
		t.Fatalf("Execute() after timeout error = %v", err)
	}
	if result.Value != int64(2) {
		t.Errorf("Expected 2, got %v", result.Value)
	}
}

func TestRuntimeConsoleCapture(t *testing.T) {
	runtime, _, host := newTestRuntime(t, loginPage)

	_, err := runtime.Execute(`
		console.log('info message');
		console.warn('warning', 2);
		console.error('error message');
	`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(host.console) != 3 {
		t.Fatalf("Expected 3 console entries, got %d", len(host.console))
	}
	levels := []string{"log", "warn", "error"}
	for i, entry := range host.console {
		if entry.Level != levels[i] {
			t.Errorf("Console entry %d: expected level %s, got %s", i, levels[i], entry.Level)
		}
	}
	if host.console[1].Message != "warning 2" {
		t.Errorf("Unexpected message %q", host.console[1].Message)
	}
}

func TestReactiveFormScript(t *testing.T) {
	runtime, doc, _ := newTestRuntime(t, loginPage)

	_, err := runtime.Execute(`
		document.querySelector('#login-form').addEventListener('submit', function (e) {
			e.preventDefault();
			var user = document.getElementById('username').value;
			document.querySelector('#status').textContent = 'Welcome, ' + user + '!';
		});
	`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	doc.Fill(doc.Query("#username"), "alice")
	doc.Click(doc.Query("#login-btn"))

	if got := TextContent(doc.Query("#status")); got != "Welcome, alice!" {
		t.Errorf("status = %q, want %q", got, "Welcome, alice!")
	}
}

func TestSetTimeoutRunsThroughHost(t *testing.T) {
	runtime, doc, host := newTestRuntime(t, loginPage)

	_, err := runtime.Execute(`
		setTimeout(function () { document.querySelector('#status').textContent = 'later'; }, 10);
		var cancelled = setTimeout(function () { document.querySelector('#status').textContent = 'never'; }, 10);
		clearTimeout(cancelled);
	`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := TextContent(doc.Query("#status")); got != "" {
		t.Fatalf("timer ran before host flush: %q", got)
	}
	host.Flush()
	if got := TextContent(doc.Query("#status")); got != "later" {
		t.Errorf("status = %q, want %q", got, "later")
	}
}

func TestPostMessageToParent(t *testing.T) {
	runtime, _, host := newTestRuntime(t, loginPage)

	if _, err := runtime.Execute(`parent.postMessage({hello: 'world'}, '*')`); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(host.posted) != 1 || !strings.Contains(string(host.posted[0]), `"hello":"world"`) {
		t.Errorf("unexpected posted data: %q", host.posted)
	}
}

func TestThrowingListenerIsReported(t *testing.T) {
	runtime, doc, host := newTestRuntime(t, loginPage)

	_, err := runtime.Execute(`
		document.querySelector('#login-btn').addEventListener('click', function () { throw new Error('boom'); });
		document.querySelector('#login-btn').addEventListener('click', function () { document.querySelector('#status').textContent = 'second'; });
	`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	doc.Dispatch(doc.Query("#login-btn"), "click")

	if got := TextContent(doc.Query("#status")); got != "second" {
		t.Errorf("second listener did not run, status = %q", got)
	}
	if len(host.console) == 0 || !strings.Contains(host.console[0].Message, "boom") {
		t.Errorf("expected uncaught error on console, got %+v", host.console)
	}
}
