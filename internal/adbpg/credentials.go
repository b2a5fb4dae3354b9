package adbpg

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mitchellh/mapstructure"
)

// Credential keys as supplied by the host's settings form.
const (
	KeyAccessKeyID             = "ANALYTICDB_KEY_ID"
	KeyAccessKeySecret         = "ANALYTICDB_KEY_SECRET"
	KeyRegionID                = "ANALYTICDB_REGION_ID"
	KeyEndpoint                = "ANALYTICDB_ENDPOINT"
	KeyProtocol                = "ANALYTICDB_PROTOCOL"
	KeyManagerAccount          = "ANALYTICDB_MANAGER_ACCOUNT"
	KeyManagerAccountPassword  = "ANALYTICDB_MANAGER_ACCOUNT_PASSWORD"
	KeyNamespace               = "ANALYTICDB_NAMESPACE"
	KeyNamespacePassword       = "ANALYTICDB_NAMESPACE_PASSWORD"
	KeyDBInstanceID            = "ANALYTICDB_DBINSTANCE_ID"
	KeyReadTimeout             = "ANALYTICDB_READ_TIMEOUT"
	KeyConnectTimeout          = "ANALYTICDB_CONNECT_TIMEOUT"
	DefaultTimeoutMillis       = 600000
	defaultEndpoint            = "gpdb.aliyuncs.com"
	userAgent                  = "dify_plugin"
)

// credentialKeys lists every key CredentialsFromEnv reads.
var credentialKeys = []string{
	KeyAccessKeyID, KeyAccessKeySecret, KeyRegionID, KeyEndpoint, KeyProtocol,
	KeyManagerAccount, KeyManagerAccountPassword, KeyNamespace, KeyNamespacePassword,
	KeyDBInstanceID, KeyReadTimeout, KeyConnectTimeout,
}

// Credentials is the connection and tenancy configuration for one client.
// It is built once and never mutated afterwards.
type Credentials struct {
	AccessKeyID            string `mapstructure:"ANALYTICDB_KEY_ID"`
	AccessKeySecret        string `mapstructure:"ANALYTICDB_KEY_SECRET"`
	RegionID               string `mapstructure:"ANALYTICDB_REGION_ID"`
	Endpoint               string `mapstructure:"ANALYTICDB_ENDPOINT"`
	Protocol               string `mapstructure:"ANALYTICDB_PROTOCOL"`
	ManagerAccount         string `mapstructure:"ANALYTICDB_MANAGER_ACCOUNT"`
	ManagerAccountPassword string `mapstructure:"ANALYTICDB_MANAGER_ACCOUNT_PASSWORD"`
	Namespace              string `mapstructure:"ANALYTICDB_NAMESPACE"`
	NamespacePassword      string `mapstructure:"ANALYTICDB_NAMESPACE_PASSWORD"`
	DBInstanceID           string `mapstructure:"ANALYTICDB_DBINSTANCE_ID"`

	// ReadTimeout and ConnectTimeout are in milliseconds.
	ReadTimeout    int `mapstructure:"ANALYTICDB_READ_TIMEOUT"`
	ConnectTimeout int `mapstructure:"ANALYTICDB_CONNECT_TIMEOUT"`
}

// CredentialsFromMap decodes a host-supplied settings mapping. Values are
// weakly typed so numbers may arrive as strings. No schema validation is
// done beyond type coercion; bad credentials surface on the first remote call.
func CredentialsFromMap(m map[string]any) (*Credentials, error) {
	c := &Credentials{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           c,
	})
	if err != nil {
		return nil, fmt.Errorf("adbpg: credentials decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("adbpg: decode credentials: %w", err)
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultTimeoutMillis
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultTimeoutMillis
	}
	return c, nil
}

// CredentialsFromEnv reads the ANALYTICDB_* variables from the process
// environment. Unset variables are left at their zero value.
func CredentialsFromEnv() (*Credentials, error) {
	m := make(map[string]any, len(credentialKeys))
	for _, k := range credentialKeys {
		if v := os.Getenv(k); v != "" {
			m[k] = v
		}
	}
	return CredentialsFromMap(m)
}

// Validate checks the fields every remote call needs.
func (c *Credentials) Validate() error {
	required := []struct{ key, val string }{
		{KeyAccessKeyID, c.AccessKeyID},
		{KeyAccessKeySecret, c.AccessKeySecret},
		{KeyRegionID, c.RegionID},
		{KeyDBInstanceID, c.DBInstanceID},
	}
	for _, r := range required {
		if r.val == "" {
			return fmt.Errorf("adbpg: %s is required", r.key)
		}
	}
	return nil
}

// LogValue keeps secrets out of logs.
func (c *Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("region_id", c.RegionID),
		slog.String("dbinstance_id", c.DBInstanceID),
		slog.String("namespace", c.Namespace),
		slog.String("endpoint", c.Endpoint),
	)
}
