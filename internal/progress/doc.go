// Package progress provides file-level progress reporting for a download
// pass.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalFiles: len(files),
//	    Workers:    10,
//	    Label:      "Downloading",
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
// # Output Format
//
//	[drivefetch] Downloading: 412 files | 1.2 GiB | Workers: 10
//	[drivefetch] Progress: 45.2% | 540 MiB | Speed: 12 MiB/s | 180 ok | 4 skipped | 2 failed | 216 pending
package progress
