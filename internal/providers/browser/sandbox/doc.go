/*
Package sandbox hosts the document model and script runtime of a single
document context.

# Overview

A context's markup is parsed into a Document (x/net/html nodes queried through
goquery's CSS engine, or XPath via htmlquery). Inline fixture scripts run in a
goja Runtime bound to that Document, so reactive fixture code can observe and
mutate the page:

  - document.querySelector / querySelectorAll / getElementById
  - element.textContent, element.value, element.click(), addEventListener
  - setTimeout / clearTimeout (scheduled through the Host)
  - parent.postMessage (delivered to the Host as encoded bytes)
  - console.log / info / warn / error

# Security Model

Scripts cannot reach the filesystem, network or process: require, process,
module and exports are removed. Every entry into the VM is bounded by the
configured timeout and interrupted when it runs over.

# Threading

Neither Document nor Runtime is safe for concurrent use. Both are owned by the
event loop of the context that created them; the Host is responsible for
marshalling scheduled callbacks back onto that loop.

# Event Dispatch

Dispatch follows the DOM order: capture listeners from the document down to the
target's parent, every listener on the target, then bubbling listeners back up.
A panicking or throwing listener is reported and the remaining listeners still
run.
*/
package sandbox
