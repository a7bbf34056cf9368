package storage

import (
	"encoding/json"
	"time"

	"netinspect/pkg/model"
)

// TransactionRecord 事务表，查询列冗余存储，完整值保存在 Payload
type TransactionRecord struct {
	ID         string `gorm:"primaryKey;size:36"`
	Method     string `gorm:"index;size:16"`
	URL        string `gorm:"type:text"`
	Host       string `gorm:"index"`
	StatusCode int    `gorm:"index"`
	Status     string `gorm:"index;size:16"`
	StartTime  int64  `gorm:"index"`
	EndTime    *int64
	Payload    string `gorm:"type:text"`
	UpdatedAt  time.Time
}

// CredentialRecord 钥匙串等价的凭据表
type CredentialRecord struct {
	Service   string `gorm:"primaryKey"`
	Account   string `gorm:"primaryKey"`
	Value     []byte
	Label     string
	UpdatedAt time.Time
}

func toRecord(tx model.NetworkTransaction) (TransactionRecord, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return TransactionRecord{}, err
	}
	return TransactionRecord{
		ID:         tx.ID,
		Method:     string(tx.Request.Method),
		URL:        tx.Request.URL,
		Host:       tx.Request.Host,
		StatusCode: tx.StatusCode(),
		Status:     string(tx.Status),
		StartTime:  tx.StartTime,
		EndTime:    tx.EndTime,
		Payload:    string(payload),
	}, nil
}

func fromRecord(rec TransactionRecord) (model.NetworkTransaction, error) {
	var tx model.NetworkTransaction
	if err := json.Unmarshal([]byte(rec.Payload), &tx); err != nil {
		return model.NetworkTransaction{}, err
	}
	return tx, nil
}
