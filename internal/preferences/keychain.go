package preferences

import (
	"context"
	"time"

	"netinspect/internal/storage"
	"netinspect/pkg/model"
)

// Keychain 凭据扫描器
type Keychain struct {
	store  storage.CredentialStore
	filter nameFilter
	now    func() time.Time
}

// NewKeychain 按 service 过滤凭据
func NewKeychain(store storage.CredentialStore, include, exclude []string) *Keychain {
	return &Keychain{
		store:  store,
		filter: nameFilter{include: include, exclude: exclude},
		now:    time.Now,
	}
}

// Scan 每条凭据生成一条偏好，key 为 account，suite 为 service
func (k *Keychain) Scan(ctx context.Context) ([]model.Preference, error) {
	creds, err := k.store.List(ctx)
	if err != nil {
		return nil, err
	}
	at := k.now()
	out := make([]model.Preference, 0, len(creds))
	for _, c := range creds {
		if !k.filter.allow(c.Service) {
			continue
		}
		out = append(out, model.NewPreference(c.Account, fromBytes(c.Value), model.SourceKeychain, c.Service, at))
	}
	sortPreferences(out)
	return out, nil
}

// Set 字符串或二进制值写入凭据
func (k *Keychain) Set(ctx context.Context, service, account string, v model.Value) error {
	var b []byte
	switch x := v.(type) {
	case model.StringValue:
		b = []byte(x)
	case model.BytesValue:
		b = []byte(x)
	default:
		return ErrUnsupportedValue
	}
	return k.store.Put(ctx, storage.Credential{Service: service, Account: account, Value: b, UpdatedAt: k.now()})
}

// Remove 删除凭据
func (k *Keychain) Remove(ctx context.Context, service, account string) error {
	return k.store.Remove(ctx, service, account)
}
