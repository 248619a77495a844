// Package fakes provides hand-written test doubles for the external systems
// secretcron talks to: AWS Secrets Manager, SSM, STS, the crontab binary and
// the mail relay.
//
// Usage:
//
//	sm := fakes.NewFakeSecretsManagerClient()
//	sm.AddSecretString("db-creds", `{"password":"x"}`)
//	sm.SetNextRotationDate("db-creds", time.Now().Add(24*time.Hour))
//	source, _ := providers.NewAWSSecretsManagerSource(cfg, providers.WithSecretsManagerClient(sm))
package fakes
