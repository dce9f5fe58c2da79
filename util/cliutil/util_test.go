package cliutil

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupDatabaseSqlite(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "sub", "chatmod.sqlite")
	db, err := SetupDatabase("sqlite://"+path, 10)
	if !assert.NoError(err) {
		return
	}
	var one int
	assert.NoError(db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(1, one)
}

func TestSetupDatabaseUnknownScheme(t *testing.T) {
	_, err := SetupDatabase("mysql://localhost/chatmod", 10)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)

	lvl, err := parseLevel("")
	assert.NoError(err)
	assert.Equal(slog.LevelInfo, lvl)

	lvl, err = parseLevel("DEBUG")
	assert.NoError(err)
	assert.Equal(slog.LevelDebug, lvl)

	_, err = parseLevel("loud")
	assert.Error(err)
}

func TestSetupSlogFile(t *testing.T) {
	assert := assert.New(t)
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger, err := SetupSlog(LogOptions{
		LogPath:   filepath.Join(t.TempDir(), "chatmod.log"),
		LogFormat: "json",
		LogLevel:  "warn",
	})
	assert.NoError(err)
	assert.NotNil(logger)

	_, err = SetupSlog(LogOptions{LogFormat: "xml"})
	assert.Error(err)
}
