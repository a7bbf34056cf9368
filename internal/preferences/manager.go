package preferences

import (
	"context"
	"errors"
	"fmt"

	"netinspect/internal/config"
	"netinspect/internal/logger"
	"netinspect/internal/storage"
	"netinspect/pkg/model"
)

var (
	// ErrUnsupportedValue 凭据只能保存字符串或二进制
	ErrUnsupportedValue = errors.New("keychain values must be String or Data")
	// ErrReadOnlySource 来源不支持写入
	ErrReadOnlySource = errors.New("preference source is read-only")
)

// Manager 汇总各扫描器，并把更新写回对应来源
type Manager struct {
	cfg      config.Preferences
	defaults *UserDefaults
	keychain *Keychain
	log      logger.Logger
}

// NewManager creds 为 nil 时不扫描凭据
func NewManager(cfg config.Preferences, creds storage.CredentialStore, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	m := &Manager{
		cfg: cfg,
		defaults: NewUserDefaults(cfg.DefaultsDir,
			cfg.IncludeUserDefaultsSuites, cfg.ExcludeUserDefaultsSuites, cfg.ShowSystemPreferences),
		log: l,
	}
	if creds != nil {
		m.keychain = NewKeychain(creds, cfg.IncludeKeychainServices, cfg.ExcludeKeychainServices)
	}
	return m
}

// UserDefaults 用户偏好扫描器
func (m *Manager) UserDefaults() *UserDefaults { return m.defaults }

// Preferences 重新扫描所有启用的来源；单个来源失败只记录日志
func (m *Manager) Preferences(ctx context.Context) ([]model.Preference, error) {
	var (
		out  []model.Preference
		errs []error
	)
	if m.cfg.AutoDiscoverUserDefaults {
		prefs, err := m.defaults.Scan(ctx)
		if err != nil {
			m.log.Err(err, "扫描用户偏好失败")
			errs = append(errs, err)
		}
		out = append(out, prefs...)
	}
	if m.cfg.AutoDiscoverKeychain && m.keychain != nil {
		prefs, err := m.keychain.Scan(ctx)
		if err != nil {
			m.log.Err(err, "扫描凭据失败")
			errs = append(errs, err)
		}
		out = append(out, prefs...)
	}
	sortPreferences(out)
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Update 写回偏好的来源，下一次扫描可见
func (m *Manager) Update(ctx context.Context, pref model.Preference, v model.Value) error {
	switch pref.Source {
	case model.SourceUserDefaults:
		if err := m.defaults.Set(pref.Suite, pref.Key, v); err != nil {
			return err
		}
	case model.SourceKeychain:
		if m.keychain == nil {
			return fmt.Errorf("%w: keychain disabled", ErrReadOnlySource)
		}
		if err := m.keychain.Set(ctx, pref.Suite, pref.Key, v); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrReadOnlySource, pref.Source)
	}
	m.log.Info("偏好已更新", "source", string(pref.Source), "suite", pref.Suite, "key", pref.Key)
	return nil
}

// Delete 从来源中删除偏好
func (m *Manager) Delete(ctx context.Context, pref model.Preference) error {
	switch pref.Source {
	case model.SourceUserDefaults:
		return m.defaults.Remove(pref.Suite, pref.Key)
	case model.SourceKeychain:
		if m.keychain == nil {
			return fmt.Errorf("%w: keychain disabled", ErrReadOnlySource)
		}
		return m.keychain.Remove(ctx, pref.Suite, pref.Key)
	}
	return fmt.Errorf("%w: %s", ErrReadOnlySource, pref.Source)
}
