// Package deskpad keeps an image editor responsive with downscaled proxies
// and still exports at full resolution.
//
// # Overview
//
// Uploaded images are stored as originals in a [Registry] and replaced on
// the canvas by a proxy: a JPEG at 40% linear scale. Every edit works on the
// proxy. At export time a [Planner] picks an export size large enough for
// the largest original, rebuilds every canvas object at that size, paints
// them in layer order and encodes one JPEG [Artifact].
//
// # Quick Start
//
//	reg := deskpad.NewRegistry()
//	sess := deskpad.NewSession(reg, 1000, 700)
//
//	// Upload: the original is kept, the canvas gets the proxy.
//	obj, proxy, err := sess.Upload(ctx, data)
//
//	// Export at full resolution.
//	res, err := sess.Export(ctx)
//	path, err := res.Artifact.Save(".")
//
// # Export Pipeline
//
// An export runs through the states of [State]:
//
//	validating -> sizing -> reconstructing -> ordering -> painting -> serializing -> done
//
// Only validating can fail the export as a whole. A single object that
// cannot be rebuilt or painted is dropped and reported in [Result.Dropped].
//
// Sizing ([Sizer]) takes the largest native image width and height on the
// canvas and fits the canvas aspect ratio around them. Registered originals
// count with their header dimensions, other images with their live raster
// size. A 5% margin is added and the result is clamped to a budget of two
// million pixels. Only when no image resolves is the canvas scaled by a
// fixed multiplier instead.
//
// Reconstruction prefers, in order: the registered original, the edited
// raster for images whose pixels were changed in the editor, and the proxy
// raster itself. Text and shapes are rebuilt as vectors; if their style is
// unusable they are rebuilt from primitive fields with default paint.
//
// # Layers
//
// The editor's layer panel lists objects top-most first. [ResolveLayerOrder]
// turns that into a bottom-first paint order; objects missing from the panel
// paint above all listed ones, in canvas order.
//
// # Documents
//
// [Document] is the JSON form of a canvas. [Document.Canvas] converts it
// and registers the originals it references.
//
// # Logging
//
// deskpad is silent by default. Use [SetLogger] to route its slog output.
package deskpad
