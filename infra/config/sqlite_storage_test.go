package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func TestSQLiteStorage_SaveAndLoad(t *testing.T) {
	storage := newTestStorage(t)

	config := map[string]string{
		"appId":       "wxd930ea5d5a258f4f",
		"mchId":       "10000100",
		"environment": "production",
	}
	require.NoError(t, storage.SaveGatewayConfig("wechat", "production", config))

	loaded, err := storage.LoadGatewayConfig("wechat", "production")
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestSQLiteStorage_SaveOverwrites(t *testing.T) {
	storage := newTestStorage(t)

	require.NoError(t, storage.SaveGatewayConfig("alipay", "production", map[string]string{"appId": "old"}))
	require.NoError(t, storage.SaveGatewayConfig("alipay", "production", map[string]string{"appId": "new"}))

	loaded, err := storage.LoadGatewayConfig("alipay", "production")
	require.NoError(t, err)
	assert.Equal(t, "new", loaded["appId"])
}

func TestSQLiteStorage_LoadMissing(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.LoadGatewayConfig("wechat", "sandbox")
	assert.Error(t, err)
}

func TestSQLiteStorage_LoadAll(t *testing.T) {
	storage := newTestStorage(t)

	require.NoError(t, storage.SaveGatewayConfig("wechat", "production", map[string]string{"appId": "wx1"}))
	require.NoError(t, storage.SaveGatewayConfig("alipay", "sandbox", map[string]string{"appId": "ali1"}))

	all, err := storage.LoadAllGatewayConfigs()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "wx1", all["wechat_production"]["appId"])
	assert.Equal(t, "ali1", all["alipay_sandbox"]["appId"])
}

func TestSQLiteStorage_Delete(t *testing.T) {
	storage := newTestStorage(t)

	require.NoError(t, storage.SaveGatewayConfig("wechat", "production", map[string]string{"appId": "wx1"}))
	require.NoError(t, storage.DeleteGatewayConfig("wechat", "production"))

	_, err := storage.LoadGatewayConfig("wechat", "production")
	assert.Error(t, err)
}
