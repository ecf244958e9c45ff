// Package blobstore defines the opaque BlobStore capability the pipeline
// uses for all object storage: Get(key) -> local path, Put(path, key) ->
// error. The pipeline is agnostic to transport; this package ships an
// in-memory implementation for tests, a local-filesystem implementation
// usable standalone, and an S3-compatible implementation adapted from
// the teacher's R2 client.
package blobstore

import "context"

// BlobStore is the capability the pipeline consumes for all object
// storage. Get must produce a byte-exact local copy of whatever was
// stored under key. Put must succeed atomically: readers see either the
// full object or none.
type BlobStore interface {
	// Get downloads the object at key into a local file under dir and
	// returns its path.
	Get(ctx context.Context, key, destDir string) (localPath string, err error)
	// Put uploads the local file at localPath under key.
	Put(ctx context.Context, localPath, key string) error
}

// Key builds the canonical blob key for an asset's named artifact.
func Key(market, assetID, name, ext string) string {
	return "tours/" + market + "/" + assetID + "/" + name + "." + ext
}

// OutputKey builds the canonical key for a conversion job's output.
func OutputKey(market, assetID string) string {
	return Key(market, assetID, "output", "sog")
}
