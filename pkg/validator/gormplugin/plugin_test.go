package gormplugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fields-valid/pkg/types"
	"fields-valid/pkg/validator"
	"fields-valid/pkg/validator/matcher"
)

// Account 测试模型，Extras 以 JSON 存储
type Account struct {
	ID       uint         `gorm:"primaryKey"`
	Username string       `json:"username" valid:"len(3, 20), '用户名长度为3-19个字符'"`
	Email    string       `json:"email" valid:"email, '邮箱格式不正确'"`
	Level    int          `json:"level" valid:"range(1, 10), '等级不合法'"`
	Extras   types.Extras `json:"extras" gorm:"type:text"`
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	v := validator.New(validator.WithRegistry(matcher.NewRegistry()))
	require.NoError(t, db.Use(New(v)))
	require.NoError(t, db.AutoMigrate(&Account{}))
	return db
}

func count(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&Account{}).Count(&n).Error)
	return n
}

func TestPlugin_Create(t *testing.T) {
	db := openDB(t)

	ok := &Account{Username: "alice", Email: "alice@example.com", Level: 3, Extras: types.Extras{"source": "web"}}
	require.NoError(t, db.Create(ok).Error)

	bad := &Account{Username: "al", Email: "alice@example.com", Level: 3}
	err := db.Create(bad).Error
	require.Error(t, err)
	msg, isViolation := validator.Message(err)
	require.True(t, isViolation, "got %v", err)
	assert.Equal(t, "用户名长度为3-19个字符", msg)

	assert.Equal(t, int64(1), count(t, db))

	var loaded Account
	require.NoError(t, db.First(&loaded, ok.ID).Error)
	source, _ := loaded.Extras.GetString("source")
	assert.Equal(t, "web", source)
}

func TestPlugin_CreateBatch(t *testing.T) {
	db := openDB(t)

	accounts := []Account{
		{Username: "alice", Email: "alice@example.com", Level: 1},
		{Username: "bob", Email: "not-an-email", Level: 1},
	}
	err := db.Create(&accounts).Error
	msg, _ := validator.Message(err)
	assert.Equal(t, "邮箱格式不正确", msg)
	assert.Zero(t, count(t, db), "整批中止")
}

func TestPlugin_Update(t *testing.T) {
	db := openDB(t)
	a := &Account{Username: "alice", Email: "alice@example.com", Level: 3}
	require.NoError(t, db.Create(a).Error)

	a.Level = 10
	err := db.Save(a).Error
	msg, _ := validator.Message(err)
	assert.Equal(t, "等级不合法", msg)

	// 按列更新不验证
	require.NoError(t, db.Model(a).Update("level", 42).Error)
	require.NoError(t, db.Model(a).Updates(map[string]any{"username": "x"}).Error)

	var loaded Account
	require.NoError(t, db.First(&loaded, a.ID).Error)
	assert.Equal(t, 42, loaded.Level)
	assert.Equal(t, "x", loaded.Username)
}

func TestPlugin_PartialUpdates(t *testing.T) {
	db := openDB(t)
	a := &Account{Username: "alice", Email: "alice@example.com", Level: 3}
	require.NoError(t, db.Create(a).Error)

	// 未更新的零值字段不参与验证
	require.NoError(t, db.Model(a).Updates(Account{Level: 5}).Error)
	require.NoError(t, db.Model(&Account{}).Where("id = ?", a.ID).Updates(&Account{Username: "alice2"}).Error)

	var loaded Account
	require.NoError(t, db.First(&loaded, a.ID).Error)
	assert.Equal(t, 5, loaded.Level)
	assert.Equal(t, "alice2", loaded.Username)
	assert.Equal(t, "alice@example.com", loaded.Email)

	// 整条记录的 Save 仍然验证
	loaded.Email = "broken"
	msg, _ := validator.Message(db.Save(&loaded).Error)
	assert.Equal(t, "邮箱格式不正确", msg)
}

func TestSameTarget(t *testing.T) {
	a, b := &Account{}, &Account{}
	assert.True(t, sameTarget(a, a))
	assert.False(t, sameTarget(a, b))
	assert.False(t, sameTarget(Account{}, a))
	assert.False(t, sameTarget(nil, a))

	list := []Account{{}}
	assert.True(t, sameTarget(list, list))
}

func TestPlugin_Skip(t *testing.T) {
	db := openDB(t)
	bad := &Account{Username: "al", Email: "x", Level: 0}
	require.NoError(t, db.Set(SkipKey, true).Create(bad).Error)
	assert.Equal(t, int64(1), count(t, db))
}

func TestPlugin_Name(t *testing.T) {
	assert.Equal(t, "fieldsvalid", New(nil).Name())
}
