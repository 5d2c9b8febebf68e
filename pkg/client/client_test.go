package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClient_MissingCertificate(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "gagents-client-test-missing-cert")
	_ = os.RemoveAll(dir)
	defer os.RemoveAll(dir)

	_, err := NewClient("localhost:9999", dir)
	assert.Error(t, err)
}

func TestClient_CloseNilConn(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.Close())
}
