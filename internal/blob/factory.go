package blob

import (
	"context"
	"fmt"
	"os"

	fsdriver "bakehouse/internal/infra/blob/fs"
	memdriver "bakehouse/internal/infra/blob/memory"
	s3driver "bakehouse/internal/infra/blob/s3"
)

// Open selects a blob.Store implementation using environment variables.
//
//	BAKEHOUSE_BLOB_DRIVER: fs|s3|memory (default fs)
//	BAKEHOUSE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("BAKEHOUSE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("BAKEHOUSE_BLOB_FS_ROOT")
		return fsdriver.New(root)
	case DriverS3:
		return s3driver.OpenFromEnv(ctx)
	case DriverMemory:
		return memdriver.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
