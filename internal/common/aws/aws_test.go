package aws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type fakeObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

type fakeS3 struct {
	objects map[string]fakeObject
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[awssdk.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(bytes.NewReader(obj.body)),
		ETag:         awssdk.String(`"etag-` + awssdk.ToString(in.Key) + `"`),
		ContentType:  awssdk.String(obj.contentType),
		LastModified: awssdk.Time(obj.modified),
	}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, ok := f.objects[awssdk.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{LastModified: awssdk.Time(obj.modified)}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.objects[awssdk.ToString(in.Key)] = fakeObject{
		body:        body,
		contentType: awssdk.ToString(in.ContentType),
		modified:    time.Now(),
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key, obj := range f.objects {
		if strings.HasPrefix(key, awssdk.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: awssdk.String(key), LastModified: awssdk.Time(obj.modified)})
		}
	}
	return out, nil
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out := args.Get(0); out != nil {
		return out.(*sns.PublishOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, in)
	if out := args.Get(0); out != nil {
		return out.(*ses.SendEmailOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

// ==========================
// S3 Tests
// ==========================

func TestS3Client_PutGet(t *testing.T) {
	api := newFakeS3()
	client := NewS3ClientFromAPI(api, "invoices")
	ctx := context.Background()

	require.NoError(t, client.Put(ctx, "bda-result/a-result.json", []byte(`{"a":1}`), "application/json"))

	obj, err := client.Get(ctx, "bda-result/a-result.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(obj.Body))
	assert.Equal(t, "etag-bda-result/a-result.json", obj.ETag)
	assert.Equal(t, "application/json", obj.ContentType)
	assert.Equal(t, "invoices", client.Bucket())
}

func TestS3Client_NotFound(t *testing.T) {
	client := NewS3ClientFromAPI(newFakeS3(), "invoices")

	_, err := client.Get(context.Background(), "missing.json")
	assert.True(t, errors.Is(err, ErrObjectNotFound))

	_, err = client.Head(context.Background(), "missing.json")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestS3Client_PutError(t *testing.T) {
	api := newFakeS3()
	api.putErr = errors.New("access denied")
	client := NewS3ClientFromAPI(api, "invoices")

	err := client.Put(context.Background(), "exports/x.csv", []byte("a,b"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.False(t, errors.Is(err, ErrObjectNotFound))
}

func TestS3Client_ListSortsByModification(t *testing.T) {
	api := newFakeS3()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	api.objects["bda-result/b-result.json"] = fakeObject{modified: base.Add(2 * time.Minute)}
	api.objects["bda-result/a-result.json"] = fakeObject{modified: base}
	api.objects["other/c.json"] = fakeObject{modified: base.Add(time.Minute)}

	infos, err := NewS3ClientFromAPI(api, "invoices").List(context.Background(), "bda-result/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "bda-result/a-result.json", infos[0].Key)
	assert.Equal(t, "bda-result/b-result.json", infos[1].Key)
	assert.Equal(t, base, infos[0].LastModified)
}

// ==========================
// Notification Tests
// ==========================

func TestSNSClient_PublishMessage(t *testing.T) {
	api := new(MockSNS)
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return awssdk.ToString(in.TopicArn) == "arn:topic" &&
			len(awssdk.ToString(in.Subject)) == 100 &&
			awssdk.ToString(in.MessageAttributes["vendor"].StringValue) == "Acme" &&
			len(in.MessageAttributes) == 1
	})).Return(&sns.PublishOutput{MessageId: awssdk.String("msg-1")}, nil)

	client := NewSNSClientFromAPI(api)
	id, err := client.PublishMessage(context.Background(), "arn:topic", strings.Repeat("s", 150), "body",
		map[string]string{"vendor": "Acme", "empty": ""})

	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	api.AssertExpectations(t)
}

func TestSNSClient_Errors(t *testing.T) {
	api := new(MockSNS)
	client := NewSNSClientFromAPI(api)

	_, err := client.PublishMessage(context.Background(), "", "s", "m", nil)
	assert.Error(t, err)

	api.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
	_, err = client.PublishMessage(context.Background(), "arn:topic", "s", "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestSESClient_SendTextEmail(t *testing.T) {
	api := new(MockSES)
	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return awssdk.ToString(in.Source) == "noreply@example.com" &&
			len(in.Destination.ToAddresses) == 2 &&
			awssdk.ToString(in.Message.Subject.Data) == "Review supplier"
	})).Return(&ses.SendEmailOutput{MessageId: awssdk.String("ses-1")}, nil)

	client := NewSESClientFromAPI(api)
	id, err := client.SendTextEmail(context.Background(), "noreply@example.com",
		[]string{"ap@example.com", "lead@example.com"}, "Review supplier", "body")
	require.NoError(t, err)
	assert.Equal(t, "ses-1", id)

	_, err = client.SendTextEmail(context.Background(), "noreply@example.com", nil, "s", "b")
	assert.Error(t, err)
	_, err = client.SendTextEmail(context.Background(), "", []string{"a@example.com"}, "s", "b")
	assert.Error(t, err)
	api.AssertExpectations(t)
}
