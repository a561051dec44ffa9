package objectstore

import (
	"context"
	"fmt"

	"github.com/airbusgeo/godal"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jcom-dev/elevresolve/internal/model"
)

// ConfigureVSIS3Credentials resolves AWS credentials the standard way (env,
// shared config, IMDS, etc. via aws-sdk-go-v2/config) and feeds them into
// GDAL's /vsis3/ virtual filesystem as CPL config options, so every
// subsequent godal.Open("/vsis3/...") call in Reader authenticates without
// each Reader needing its own AWS client.
func ConfigureVSIS3Credentials(ctx context.Context, region string) error {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return model.NewError(model.KindConfigError, "loading AWS credentials for object-store access", err)
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return model.NewError(model.KindConfigError, "retrieving AWS credentials", err)
	}

	gdalMu.Lock()
	defer gdalMu.Unlock()
	godal.SetConfigOption("AWS_ACCESS_KEY_ID", creds.AccessKeyID)
	godal.SetConfigOption("AWS_SECRET_ACCESS_KEY", creds.SecretAccessKey)
	if creds.SessionToken != "" {
		godal.SetConfigOption("AWS_SESSION_TOKEN", creds.SessionToken)
	}
	if region != "" {
		godal.SetConfigOption("AWS_REGION", region)
	}
	return nil
}

// HeadObjectExists checks a single file's existence and size via a plain
// S3 HeadObject call, independent of GDAL.
func HeadObjectExists(ctx context.Context, region, bucket, key string) (sizeBytes int64, err error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return 0, model.NewError(model.KindConfigError, "loading AWS credentials", err)
	}
	client := s3.NewFromConfig(cfg)

	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return 0, model.NewError(model.KindTransient, fmt.Sprintf("head-object %s/%s", bucket, key), err)
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}
