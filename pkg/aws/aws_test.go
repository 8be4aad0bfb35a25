package aws

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetrics struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeMetrics) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsClient_DisabledSendsNothing(t *testing.T) {
	fake := &fakeMetrics{}
	m := &MetricsClient{client: fake, namespace: "Checkout", enabled: false}

	require.NoError(t, m.RecordCount(context.Background(), "OrdersCreated", nil))
	assert.Empty(t, fake.inputs)
}

func TestMetricsClient_RecordCount(t *testing.T) {
	fake := &fakeMetrics{}
	m := &MetricsClient{client: fake, namespace: "Checkout", enabled: true}

	require.NoError(t, m.RecordCount(context.Background(), "OrdersCreated", map[string]string{"Currency": "eur"}))
	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "Checkout", *in.Namespace)
	require.Len(t, in.MetricData, 1)
	assert.Equal(t, "OrdersCreated", *in.MetricData[0].MetricName)
	assert.Equal(t, 1.0, *in.MetricData[0].Value)
	require.Len(t, in.MetricData[0].Dimensions, 1)
	assert.Equal(t, "Currency", *in.MetricData[0].Dimensions[0].Name)
}

func TestMetricsClient_NilIsDisabled(t *testing.T) {
	var m *MetricsClient
	assert.False(t, m.IsEnabled())
	assert.NoError(t, m.RecordValue(context.Background(), "x", 1, nil))
}

type fakeSecrets struct {
	calls int
	value *string
	err   error
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestSecretsClient_CachesValue(t *testing.T) {
	v := "whsec_from_sm"
	fake := &fakeSecrets{value: &v}
	s := &SecretsClient{api: fake, cache: map[string]string{}}

	for i := 0; i < 3; i++ {
		got, err := s.GetSecret(context.Background(), "stripe/webhook")
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	assert.Equal(t, 1, fake.calls)
}

func TestSecretsClient_Errors(t *testing.T) {
	s := &SecretsClient{api: &fakeSecrets{err: errors.New("denied")}, cache: map[string]string{}}
	_, err := s.GetSecret(context.Background(), "stripe/webhook")
	assert.ErrorContains(t, err, "denied")

	s = &SecretsClient{api: &fakeSecrets{}, cache: map[string]string{}}
	_, err = s.GetSecret(context.Background(), "stripe/webhook")
	assert.ErrorContains(t, err, "no string value")
}

func TestSecretsClient_GetSecretField(t *testing.T) {
	kv := `{"STRIPE_WEBHOOK_SECRET":"whsec_kv","OTHER":"x"}`
	s := &SecretsClient{api: &fakeSecrets{value: &kv}, cache: map[string]string{}}

	got, err := s.GetSecretField(context.Background(), "checkout", "STRIPE_WEBHOOK_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "whsec_kv", got)

	_, err = s.GetSecretField(context.Background(), "checkout", "MISSING")
	assert.ErrorContains(t, err, `no field "MISSING"`)

	plain := "whsec_plain"
	s = &SecretsClient{api: &fakeSecrets{value: &plain}, cache: map[string]string{}}
	got, err = s.GetSecretField(context.Background(), "checkout", "STRIPE_WEBHOOK_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "whsec_plain", got)
}

type fakeSNS struct {
	in *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	return &sns.PublishOutput{}, nil
}

func TestSNSClient_Publish(t *testing.T) {
	fake := &fakeSNS{}
	c := &SNSClient{client: fake}

	require.NoError(t, c.Publish(context.Background(), "arn:aws:sns:eu-west-3:000000000000:order-events", []byte(`{"type":"order_created"}`), "order_created"))
	assert.Equal(t, `{"type":"order_created"}`, *fake.in.Message)
	assert.Equal(t, "order_created", *fake.in.MessageAttributes["event_type"].StringValue)

	assert.Error(t, c.Publish(context.Background(), "", []byte("x"), ""))
}

type fakeLogs struct {
	mu      sync.Mutex
	events  []types.InputLogEvent
	streams int
	exists  bool
}

func (f *fakeLogs) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	if f.exists {
		return nil, &types.ResourceAlreadyExistsException{}
	}
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeLogs) PutRetentionPolicy(context.Context, *cloudwatchlogs.PutRetentionPolicyInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeLogs) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.streams++
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, in.LogEvents...)
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func TestCloudWatchLogsClient_FlushOnClose(t *testing.T) {
	fake := &fakeLogs{exists: true}
	c, err := newCloudWatchLogsClient(context.Background(), fake, "/checkout/webhook", "checkout")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.streams)

	_, _ = c.Write([]byte(`{"msg":"one"}`))
	_, _ = c.Write([]byte(`{"msg":"two"}`))
	require.NoError(t, c.Close())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.events, 2)
	assert.Equal(t, `{"msg":"one"}`, *fake.events[0].Message)
}
