// Package raster converts fetched gallery images into bounded output
// rasters: probing encoder support, splitting oversized images into tile
// grids, and stitching image sequences into vertically stacked composites.
//
// # Formats
//
// Every output format carries hard ceilings: a per-axis dimension limit
// and a total pixel limit. [Probe] verifies that a requested format can
// actually be encoded by this build, silently downgrading to the lossless
// [Fallback] otherwise. avif is decodeless and encoderless by design; it
// exists in the table so requesting it exercises the downgrade.
//
// # Tiling
//
// [PlanTiles] computes the minimal row/column grid that brings every tile
// of a single oversized raster under both ceilings. Tiles are cropped via
// SubImage and encoded independently.
//
// # Stitching
//
// [Combine] draws a sequence of independently sized images into one or
// more composite chunks without knowing the final size in advance. The
// widest image fixes the composite width; one uniform scale factor fits
// it under the dimension ceiling, and chunk heights respect the pixel
// ceiling. Images freely span chunk boundaries: the fitting rows land in
// the open chunk, the chunk is encoded and released, and drawing resumes
// in the next one. Decoded sources are released as soon as they are fully
// consumed, so peak memory stays near one source plus one open chunk.
package raster
