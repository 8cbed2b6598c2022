// Package storage provides object storage connectivity for Shopdesk Core.
//
// It wraps the MinIO S3-compatible client with the lifecycle and health
// check conventions used by the other infrastructure packages. Customer
// document files live in a single bucket under a configurable base path:
//
//	{base_path}{submission_id}/{category}/{filename}
//
// # Usage
//
//	store, err := storage.Connect(ctx, cfg.Storage)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	key := store.ObjectKey("sub-123", "invoices", "march.pdf")
//	err = store.Upload(ctx, key, reader, size, "application/pdf")
//
// # Security
//
// Downloads go through presigned URLs with a short expiry rather than
// proxying object bytes through the API server.
package storage
