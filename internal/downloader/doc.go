// Package downloader fetches selected file records into a storage sink.
//
// # Usage
//
//	d := downloader.New(driveClient, sink, downloader.Options{
//	    Workers:  10,
//	    Progress: reporter,
//	})
//	outcomes := d.DownloadMany(ctx, files)
//
// # Worker Pool
//
// Workers receive records from a channel, stream each file body into
// <type dir>/<name> and send an Outcome back on a results channel. The
// collecting goroutine is the only one that aggregates. Every attempt is
// followed by a fixed delay. There is no per-item retry here; a second pass
// over failures is the caller's decision.
//
// # Skips
//
// Provider-native documents (types containing "google-apps") have no binary
// content and are skipped without a remote call.
package downloader
