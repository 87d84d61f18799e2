package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket. err, when set, fails every call.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	err      error
	pageSize int
	deadline bool
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}, pageSize: 2} }

func (f *fakeS3) check(ctx context.Context) error {
	if _, ok := ctx.Deadline(); ok {
		f.deadline = true
	}
	return f.err
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return nil, err
	}
	b, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return nil, err
	}
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return nil, err
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return nil, err
	}

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+f.pageSize, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func TestS3_SaveReadDelete(t *testing.T) {
	f := newFakeS3()
	s := NewS3(f, "bucket", time.Second)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "alice", "a.txt", []byte("hello")))
	assert.Contains(t, f.objects, "alice/a.txt")
	assert.True(t, f.deadline, "calls carry a timeout")

	got, err := s.Read(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, s.Delete(ctx, "alice", "a.txt"))
	_, err = s.Read(ctx, "alice", "a.txt")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestS3_ListPaginatesAndSkipsMarkers(t *testing.T) {
	f := newFakeS3()
	for _, k := range []string{"alice/", "alice/c", "alice/a", "alice/b", "alice/dir/x", "alicex/y", "bob/z"} {
		f.objects[k] = []byte("x")
	}
	s := NewS3(f, "bucket", time.Second)

	names, err := s.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	names, err = s.List(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{}, names)
}

func TestS3_ErrorsPassThrough(t *testing.T) {
	f := newFakeS3()
	f.err = errors.New("dial tcp: connection refused")
	s := NewS3(f, "bucket", time.Second)

	err := s.Save(context.Background(), "alice", "a", []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)

	_, err = s.List(context.Background(), "alice")
	assert.ErrorContains(t, err, "connection refused")
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(&smithy.GenericAPIError{Code: "NotFound"}), common.ErrorNotFound)
	assert.ErrorIs(t, classify(&types.NoSuchKey{}), common.ErrorNotFound)

	other := &smithy.GenericAPIError{Code: "AccessDenied"}
	assert.Same(t, other, classify(other))
}
