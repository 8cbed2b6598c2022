// Package document manages customer document submissions and the object
// store that backs them.
//
// A submission groups the files a customer has sent in, keyed by a stable
// submission ID. Each file is tracked as a FileLink inside a per-category
// list; overwriting a file archives the previous record onto its version
// history rather than discarding it.
//
// The package splits into three layers:
//
//   - Repository: SQLite persistence for submissions. The document_names
//     and file_links columns hold JSON, so the link structure can evolve
//     without schema churn.
//   - SyncService: keeps the database view of files in step with the
//     bucket. SyncFileChange records a single add/update, ScanAndSync
//     rebuilds a submission's links from what the bucket actually holds.
//   - Service: the API-facing operations (upload, download, delete,
//     listing) that combine the object store with the sync layer.
package document
