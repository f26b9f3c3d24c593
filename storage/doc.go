// Package storage archives reconciliation plans and reports in content
// addressed stores.
//
// Content is identified by the SHA-256 hash of its bytes and kept in one
// namespace per content type (plans, reports). Backends are created from
// location URIs:
//
//   - file:///var/lib/configurator
//   - s3://bucket-name/prefix?region=us-west-2&endpoint=minio.local:9000
//   - ipfs://127.0.0.1:5001/configurator?timeout=30s
//   - vault://vault.example.com:8200/secret/configurator
//
// Several URIs can be combined with StorageBackendFactory.CreateMultiBackend,
// which writes to every available backend and reads from the first that has
// the content:
//
//	factory := storage.NewStorageBackendFactory(log)
//	backend, err := factory.CreateMultiBackend([]string{
//	    "file:///var/lib/configurator",
//	    "s3://plans/prod?region=eu-west-1",
//	})
//	id, err := storage.StoreJSON(ctx, backend, interfaces.PlanType, plan)
//
// Credentials are read from the URI user info or, when absent, from
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY for S3 and VAULT_TOKEN for Vault.
package storage
