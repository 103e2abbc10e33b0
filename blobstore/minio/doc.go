// Package minio backs the blobstore with a MinIO (or any S3-compatible)
// object store through the official MinIO Go client.
//
// Useful for self-hosted deployments where the AWS SDK is unwanted: the
// client speaks to MinIO, Ceph, SeaweedFS, Garage and friends directly.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "knowledge/")
//	kg, err := knowgo.Open(ctx, 128, knowgo.WithBlobStore(store))
package minio
