/*
Package profile classifies file sets into execution profile names.

Different warm workloads want different pool shapes: thousands of small
sequence frames benefit from a wide pool polling quickly, while a handful
of large video files saturate the cache link with two readers. The
selector inspects only the path strings of a job's file set and returns
the name of a seeded catalog profile; the coordinator resolves the name
to concrete worker_count / max_concurrent_files / poll_interval values.

Classification rules, first match wins:

 1. More than 100 paths and one of tif/tiff/dpx/exr accounts for at
    least 80% of them: image-sequences.
 2. Any video container extension (mov/mp4/mxf/avi/mkv): large-videos.
 3. Any proxy still extension (jpg/jpeg/png/webp): proxy-media.
 4. More than 100 paths with mean length under 100 bytes: small-files.
 5. Otherwise: general.

Selection is deterministic (same inputs, same answer) and bounded by a
time budget. If the scan exceeds the budget the selector returns the
default rather than delay job creation.

# Usage

	sel := profile.NewSelector(500 * time.Millisecond)
	name := sel.Select(job.FilePaths)
	prof, err := store.GetProfileByName(ctx, name)
*/
package profile
