package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/validation"
)

// MaxSQSMessageSize is the SQS message size limit.
const MaxSQSMessageSize = 256 * 1024

// SQSAPI is the subset of the SQS client used by SQSTransport.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSTransport publishes each batch as one SQS message. The revision, project id and
// record count travel as message attributes so consumers can route without decoding.
type SQSTransport struct {
	client   SQSAPI
	queueURL string
}

// NewSQSClient loads the default AWS credential chain for region.
func NewSQSClient(ctx context.Context, region string) (*sqs.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

// NewSQSTransport panics if client is nil.
func NewSQSTransport(client SQSAPI, queueURL string) *SQSTransport {
	validation.AssertPresent(client, "sqs client")
	return &SQSTransport{client: client, queueURL: queueURL}
}

func (t *SQSTransport) Dispatch(ctx context.Context, batch *event.Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	if len(payload) > MaxSQSMessageSize {
		return fmt.Errorf("batch of %d bytes exceeds the sqs message limit of %d bytes", len(payload), MaxSQSMessageSize)
	}

	_, err = t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"revision":     stringAttribute(batch.Revision),
			"project_id":   stringAttribute(batch.ProjectID),
			"record_count": numberAttribute(batch.Size()),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send batch to sqs: %w", err)
	}
	return nil
}

func stringAttribute(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

func numberAttribute(v int) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("Number"), StringValue: aws.String(strconv.Itoa(v))}
}
