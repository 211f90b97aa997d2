package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/nftmart?sslmode=disable", DSN(ClientConfig{
		Host: "db", Database: "nftmart", User: "u", Password: "p",
	}))
	assert.Equal(t, "postgres://u:p@db:6432/nftmart?sslmode=require", DSN(ClientConfig{
		Host: "db", Port: 6432, Database: "nftmart", User: "u", Password: "p", SSLMode: "require",
	}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
	assert.Equal(t, "postgres://u:p%40ss%2Fw@db:5432/nftmart?sslmode=disable", DSN(ClientConfig{
		Host: "db", Database: "nftmart", User: "u", Password: "p@ss/w",
	}))
}

func TestLoadMigrations(t *testing.T) {
	ms, err := loadMigrations()
	assert.NoError(t, err)
	if assert.Len(t, ms, 2) {
		assert.Equal(t, "001_market.sql", ms[0].name)
		assert.Equal(t, "002_market_events.sql", ms[1].name)
	}
	for _, m := range ms {
		assert.Len(t, m.sum, 64)
		assert.Equal(t, checksum([]byte(m.sql)), m.sum)
	}
}

func TestNumericText(t *testing.T) {
	v, err := parseU64(numArg(18446744073709551615))
	assert.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), v)

	_, err = parseU64("1.5")
	assert.Error(t, err)

	b, err := parseBalance("340282366920938463463374607431768211455")
	assert.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211455", b.String())
}
