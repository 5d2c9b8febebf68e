package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Publish an envelope from a YAML resource file",
	Long: `apply reads a YAML Envelope resource and publishes it to the
named agent via the admin gRPC surface:

  apiVersion: gagents/v1
  kind: Envelope
  metadata:
    agentId: 00000000-0000-0000-0000-000000000001
  spec:
    typeUrl: type.googleapis.com/google.protobuf.Int64Value
    payload: CAE=        # base64-encoded serialized payload (Int64Value 1)
    direction: self       # self, up, down, both
    correlationId: ""
    metadata: {}`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML envelope resource to apply (required)")
	applyCmd.Flags().String("addr", "127.0.0.1:8443", "Agent host admin address")
	applyCmd.Flags().String("cert-dir", "", "Client certificate directory (defaults to the CLI cert dir)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// envelopeResource is the single resource kind apply understands: a
// one-shot envelope to publish on an already-active agent's behalf.
type envelopeResource struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		AgentID string `yaml:"agentId"`
	} `yaml:"metadata"`
	Spec struct {
		TypeURL       string            `yaml:"typeUrl"`
		Payload       string            `yaml:"payload"`
		Direction     string            `yaml:"direction"`
		CorrelationID string            `yaml:"correlationId"`
		Metadata      map[string]string `yaml:"metadata"`
	} `yaml:"spec"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var resource envelopeResource
	if err := yaml.Unmarshal(data, &resource); err != nil {
		return fmt.Errorf("parse YAML: %w", err)
	}
	if resource.Kind != "Envelope" {
		return fmt.Errorf("unsupported resource kind %q (only Envelope is supported)", resource.Kind)
	}

	payload, err := base64.StdEncoding.DecodeString(resource.Spec.Payload)
	if err != nil {
		return fmt.Errorf("decode spec.payload: %w", err)
	}

	c, err := dialClient(cmd)
	if err != nil {
		return fmt.Errorf("connect to agent host: %w", err)
	}
	defer c.Close()

	if err := c.PublishEnvelope(
		resource.Metadata.AgentID,
		resource.Spec.TypeURL,
		payload,
		resource.Spec.Direction,
		resource.Spec.CorrelationID,
		resource.Spec.Metadata,
	); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}

	fmt.Printf("envelope published to agent %s\n", resource.Metadata.AgentID)
	return nil
}
