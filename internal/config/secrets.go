package config

const redacted = "***"

// Redacted returns a copy of cfg safe to log: credentials are replaced by
// "***" and slices are copied so the caller cannot mutate the original.
func (c *Config) Redacted() Config {
	out := *c

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Operator.PrivateKey)
	redact(&out.Operator.KeyPassword)

	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	out.Notify.Events = append([]string(nil), c.Notify.Events...)
	out.Genesis.Accounts = append([]GenesisAccount(nil), c.Genesis.Accounts...)
	out.Genesis.Whitelist = append([]string(nil), c.Genesis.Whitelist...)
	out.Genesis.Categories = append([]string(nil), c.Genesis.Categories...)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
