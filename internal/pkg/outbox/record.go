// internal/pkg/outbox/record.go
package outbox

import "time"

// Status 只有两个值：NEW 等待投递，SENT 已投递。
// 正常路径下 SENT 的记录不会再被投递；retries/last_error 只在 NEW 阶段更新。
type Status string

const (
	StatusNew  Status = "NEW"
	StatusSent Status = "SENT"
)

// Record 是 outbox 表的一行。
// 与它宣告的状态变更在同一个本地事务里写入，之后只按 id 单行更新。
// 本设计不删除记录，保留作审计与回放，清理属于外部运维策略。
type Record struct {
	ID          uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	AggregateID string     `gorm:"column:aggregate_id;size:64;index"`
	EventType   string     `gorm:"column:event_type;size:64"`
	Payload     []byte     `gorm:"column:payload"`
	Status      Status     `gorm:"column:status;size:16;index"`
	Retries     int        `gorm:"column:retries"`
	LastError   string     `gorm:"column:last_error;size:1024"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	SentAt      *time.Time `gorm:"column:sent_at"`
}

func (Record) TableName() string { return "outbox" }
