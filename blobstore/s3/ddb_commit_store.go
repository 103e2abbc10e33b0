package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/knowgo/blobstore"
)

// DDBClient is the interface for the DynamoDB operations used by
// DDBCommitStore. It is satisfied by *dynamodb.Client.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrConcurrentModification is returned when another writer committed a
// CURRENT update between read and write.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBCommitStore implements blobstore.BlobStore backed by S3 with DynamoDB
// for atomic CURRENT updates. This enables safe concurrent writers.
//
// S3 alone offers no compare-and-swap, so two writers saving snapshots
// into the same prefix could silently overwrite each other's CURRENT
// pointer. The commit store keeps all snapshot sections and manifests in
// S3 and routes only the CURRENT key through a DynamoDB commit log:
//   - Put("CURRENT", ...) appends a new version row with a conditional
//     write and fails with ErrConcurrentModification if the version was
//     taken by another writer.
//   - Get("CURRENT") resolves the highest committed version.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 bucket/prefix
//   - Sort key: version (number) - monotonically increasing version
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name knowgo-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	objects   *Store
	ddb       DDBClient
	tableName string
	baseURI   string // partition key, e.g. "s3://bucket/prefix"
}

// NewDDBCommitStore creates a commit store that stores objects in objects
// and commit rows in the given DynamoDB table. baseURI should be in
// "s3://bucket/prefix" form; stores with distinct base URIs never see each
// other's commits.
func NewDDBCommitStore(objects *Store, ddb DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		objects:   objects,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Get reads a blob. For CURRENT the latest committed manifest key is
// resolved from DynamoDB; all other keys come from S3.
func (s *DDBCommitStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == blobstore.CurrentKey {
		version, manifestKey, err := s.latestVersion(ctx)
		if err != nil {
			return nil, err
		}

		if version == 0 {
			return nil, blobstore.ErrNotFound
		}

		return []byte(manifestKey), nil
	}

	return s.objects.Get(ctx, key)
}

// Put writes a blob. For CURRENT a new version row is committed with a
// conditional write; all other keys go straight to S3.
func (s *DDBCommitStore) Put(ctx context.Context, key string, data []byte) error {
	if key == blobstore.CurrentKey {
		return s.commit(ctx, string(data))
	}

	return s.objects.Put(ctx, key, data)
}

// Delete removes a blob. For CURRENT the latest commit row is retracted,
// exposing the previous version again.
func (s *DDBCommitStore) Delete(ctx context.Context, key string) error {
	if key == blobstore.CurrentKey {
		version, _, err := s.latestVersion(ctx)
		if err != nil {
			return err
		}

		if version == 0 {
			return nil
		}

		_, err = s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"base_uri": &types.AttributeValueMemberS{Value: s.baseURI},
				"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			},
		})

		return err
	}

	return s.objects.Delete(ctx, key)
}

// List lists S3 keys under prefix. The virtual CURRENT key lives in
// DynamoDB and is not included.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.objects.List(ctx, prefix)
}

// latestVersion queries DynamoDB for the highest committed version. A
// version of 0 means nothing has been committed yet.
func (s *DDBCommitStore) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // descending, newest first
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit table: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]

	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("commit row has no numeric version attribute")
	}

	keyAttr, ok := item["manifest_key"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("commit row has no manifest_key attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse commit version: %w", err)
	}

	return version, keyAttr.Value, nil
}

// commit writes the next version row. The conditional expression rejects
// the write when another writer claimed the same version in the meantime.
func (s *DDBCommitStore) commit(ctx context.Context, manifestKey string) error {
	version, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":     &types.AttributeValueMemberS{Value: s.baseURI},
			"version":      &types.AttributeValueMemberN{Value: strconv.FormatUint(version+1, 10)},
			"manifest_key": &types.AttributeValueMemberS{Value: manifestKey},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}

		return fmt.Errorf("commit version %d: %w", version+1, err)
	}

	return nil
}
