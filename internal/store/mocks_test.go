package store

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type mockS3 struct {
	mu     sync.Mutex
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, _ := io.ReadAll(in.Body)
	m.inputs = append(m.inputs, in)
	m.bodies = append(m.bodies, body)
	return &s3.PutObjectOutput{}, m.err
}

type mockCloudFront struct {
	inputs []*cloudfront.CreateInvalidationInput
	err    error
}

func (m *mockCloudFront) CreateInvalidation(_ context.Context, in *cloudfront.CreateInvalidationInput, _ ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudfront.CreateInvalidationOutput{}, m.err
}
