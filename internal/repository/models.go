package repository

import (
	"encoding/json"
	"time"

	"github.com/notifyhq/notify-engine/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID        string          `gorm:"type:uuid;primaryKey"`
	Title     string          `gorm:"type:varchar(255);not null"`
	Message   string          `gorm:"type:text;not null"`
	Priority  domain.Priority `gorm:"type:varchar(10);not null"`
	Role      string          `gorm:"type:varchar(100);not null"`
	IsRead    bool            `gorm:"not null;default:false"`
	CreatedAt time.Time       `gorm:"index"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// DeliveryChannelModel is the persistence model for delivery_channels.
// Config is stored as raw JSONB and decoded only at the domain boundary.
type DeliveryChannelModel struct {
	ID        string             `gorm:"type:uuid;primaryKey"`
	Name      string             `gorm:"type:varchar(255);not null"`
	Type      domain.ChannelType `gorm:"type:varchar(10);not null"`
	Config    []byte             `gorm:"type:jsonb"`
	Active    bool               `gorm:"not null;default:true"`
	CreatedAt time.Time
}

func (DeliveryChannelModel) TableName() string {
	return "delivery_channels"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID             string               `gorm:"type:uuid;primaryKey"`
	NotificationID string               `gorm:"type:uuid;not null"`
	ChannelID      string               `gorm:"type:uuid;not null"`
	Status         domain.AttemptStatus `gorm:"type:varchar(10);not null"`
	AttemptCount   int                  `gorm:"not null;default:0"`
	MaxAttempts    int                  `gorm:"not null;default:3"`
	LastAttemptAt  *time.Time
	NextRetryAt    *time.Time
	ErrorMessage   *string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  n.Priority,
		Role:      n.Role,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:        m.ID,
		Title:     m.Title,
		Message:   m.Message,
		Priority:  m.Priority,
		Role:      m.Role,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
}

func channelModelFromDomain(c *domain.DeliveryChannel) (*DeliveryChannelModel, error) {
	if c == nil {
		return nil, nil
	}

	config := c.Config
	if config == nil {
		config = domain.ChannelConfig{}
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}

	return &DeliveryChannelModel{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Config:    raw,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
	}, nil
}

func channelModelToDomain(m *DeliveryChannelModel) (*domain.DeliveryChannel, error) {
	if m == nil {
		return nil, nil
	}

	config := domain.ChannelConfig{}
	if len(m.Config) > 0 {
		if err := json.Unmarshal(m.Config, &config); err != nil {
			return nil, err
		}
	}

	return &domain.DeliveryChannel{
		ID:        m.ID,
		Name:      m.Name,
		Type:      m.Type,
		Config:    config,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}, nil
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		ChannelID:      a.ChannelID,
		Status:         a.Status,
		AttemptCount:   a.AttemptCount,
		MaxAttempts:    a.MaxAttempts,
		LastAttemptAt:  a.LastAttemptAt,
		NextRetryAt:    a.NextRetryAt,
		ErrorMessage:   a.ErrorMessage,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		ChannelID:      m.ChannelID,
		Status:         m.Status,
		AttemptCount:   m.AttemptCount,
		MaxAttempts:    m.MaxAttempts,
		LastAttemptAt:  m.LastAttemptAt,
		NextRetryAt:    m.NextRetryAt,
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
