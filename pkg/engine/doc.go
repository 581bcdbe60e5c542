// Package engine mixes any number of playing clips into fixed-size
// interleaved blocks.
//
// An Engine owns the emitters and is driven by a single render context.
// Clients use a Facade, which queues every mutation as a command and
// applies the queue on the render context before each block. Handles
// refer to emitters by ID so a handle outliving its sound is harmless.
//
// Two driving models are supported. When the output backend needs an
// audio thread the Facade renders one block ahead on its own goroutine
// and the backend callback only copies it out. Otherwise the callback
// renders the block itself.
package engine
