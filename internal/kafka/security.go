package kafka

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"fmt"
	"hash"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"github.com/xdg-go/scram"
)

const (
	defaultMSKRegion = "us-east-1"
	mskTokenTimeout  = 10 * time.Second
)

// SHA256 and SHA512 are the SCRAM hash generators Kafka brokers accept.
var (
	SHA256 scram.HashGeneratorFcn = func() hash.Hash { return sha256.New() }
	SHA512 scram.HashGeneratorFcn = func() hash.Hash { return sha512.New() }
)

var _ sarama.SCRAMClient = (*scramClient)(nil)

// scramClient adapts an xdg-go/scram conversation to sarama.
type scramClient struct {
	hashGen      scram.HashGeneratorFcn
	conversation *scram.ClientConversation
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.hashGen.NewClient(userName, password, authzID)
	if err != nil {
		return fmt.Errorf("scram client: %w", err)
	}
	c.conversation = client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.conversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.conversation.Done()
}

// MSKAccessTokenProvider signs OAUTHBEARER tokens for AWS MSK IAM with the default
// AWS credential chain.
type MSKAccessTokenProvider struct {
	region string
}

func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mskTokenTimeout)
	defer cancel()

	token, expiryMs, err := signer.GenerateAuthToken(ctx, m.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}
	return &sarama.AccessToken{
		Token:      token,
		Extensions: map[string]string{"expiry": strconv.FormatInt(expiryMs, 10)},
	}, nil
}

// saslSetup fills the SASL section of a sarama config for one mechanism.
type saslSetup func(config *sarama.Config, kc ConsumerConfig)

var saslMechanisms = map[string]saslSetup{
	"PLAIN":         withPassword(sarama.SASLTypePlaintext, nil),
	"SCRAM-SHA-256": withPassword(sarama.SASLTypeSCRAMSHA256, SHA256),
	"SCRAM-SHA-512": withPassword(sarama.SASLTypeSCRAMSHA512, SHA512),
	"AWS_MSK_IAM":   withMSKIAM,
}

func withPassword(mechanism sarama.SASLMechanism, hashGen scram.HashGeneratorFcn) saslSetup {
	return func(config *sarama.Config, kc ConsumerConfig) {
		config.Net.SASL.Mechanism = mechanism
		config.Net.SASL.User = kc.SASLUsername
		config.Net.SASL.Password = kc.SASLPassword
		if hashGen != nil {
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{hashGen: hashGen}
			}
		}
	}
}

func withMSKIAM(config *sarama.Config, kc ConsumerConfig) {
	region := kc.AWSRegion
	if region == "" {
		region = defaultMSKRegion
	}
	config.Net.SASL.Mechanism = sarama.SASLTypeOAuth
	// sarama rejects an OAUTHBEARER config with empty credentials.
	config.Net.SASL.User = "token"
	config.Net.SASL.Password = "token"
	config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{region: region}
}

func tlsConfig(skipVerify bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: skipVerify, //nolint:gosec // opt-in for self-signed development brokers
	}
}

// configureSecurity applies the security protocol and SASL mechanism of kc to config.
// It is shared by the consumer group and the DLQ producer.
func configureSecurity(config *sarama.Config, kc ConsumerConfig) error {
	var useSASL, useTLS bool
	switch kc.SecurityProtocol {
	case "", "PLAINTEXT":
	case "SSL":
		useTLS = true
	case "SASL_PLAINTEXT":
		useSASL = true
	case "SASL_SSL":
		useSASL, useTLS = true, true
	default:
		return fmt.Errorf("unsupported security protocol: %s", kc.SecurityProtocol)
	}

	if useSASL {
		setup, ok := saslMechanisms[kc.SASLMechanism]
		if !ok {
			return fmt.Errorf("unsupported SASL mechanism: %s", kc.SASLMechanism)
		}
		config.Net.SASL.Enable = true
		setup(config, kc)
	}
	if useTLS {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = tlsConfig(kc.TLSSkipVerify)
	}
	return nil
}
