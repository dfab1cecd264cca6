// Package viz provides the live terminal view for link networks.
//
// The view is a Bubble Tea program:
//
//   - [Model]: steps a scene every frame and draws its links
//   - [Canvas]: Braille-based pixel canvas
//   - [Projection]: maps the XY plane onto the canvas
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	.     - Single step while paused
//	R     - Rebuild the scene from its config
//	G     - Toggle gravity
//	T     - Tear links at the scene centre
//	+/-   - Change relaxation iterations
//	Q     - Quit
package viz
