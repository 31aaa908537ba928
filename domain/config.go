package domain

// TenantConfig holds the per-tenant automation flags.
// It is fetched fresh from the store for every inbound event and never
// cached across events: the store is the single source of truth, mutable
// only through the OTP-gated configuration-update flow.
type TenantConfig struct {
	Prefix          string   `json:"prefix"`
	AutoType        bool     `json:"auto_type"`
	AutoRecord      bool     `json:"auto_record"`
	AntiCall        bool     `json:"anti_call"`
	AutoViewStatus  bool     `json:"auto_view_status"`
	AutoLikeStatus  bool     `json:"auto_like_status"`
	AutoStatusReply bool     `json:"auto_status_reply"`
	ReadReceipts    bool     `json:"read_receipts"`
	RejectText      string   `json:"reject_text"`
	StatusReply     string   `json:"status_reply"`
	LikeEmojis      []string `json:"like_emojis"`
}

// DefaultTenantConfig is applied when a tenant has never stored a config.
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		Prefix:          ".",
		ReadReceipts:    true,
		RejectText:      "I am busy right now, I will call you back.",
		StatusReply:     "Status seen ✅",
		LikeEmojis:      []string{"💚", "🔥", "😂", "👍", "🎉"},
		AutoViewStatus:  false,
		AutoLikeStatus:  false,
		AutoStatusReply: false,
	}
}

// ConfigDelta is a partial update to a TenantConfig. Nil fields are
// left untouched when the delta is applied.
type ConfigDelta struct {
	Prefix          *string   `json:"prefix,omitempty" validate:"omitempty,min=1,max=3"`
	AutoType        *bool     `json:"auto_type,omitempty"`
	AutoRecord      *bool     `json:"auto_record,omitempty"`
	AntiCall        *bool     `json:"anti_call,omitempty"`
	AutoViewStatus  *bool     `json:"auto_view_status,omitempty"`
	AutoLikeStatus  *bool     `json:"auto_like_status,omitempty"`
	AutoStatusReply *bool     `json:"auto_status_reply,omitempty"`
	ReadReceipts    *bool     `json:"read_receipts,omitempty"`
	RejectText      *string   `json:"reject_text,omitempty" validate:"omitempty,max=500"`
	StatusReply     *string   `json:"status_reply,omitempty" validate:"omitempty,max=500"`
	LikeEmojis      *[]string `json:"like_emojis,omitempty" validate:"omitempty,min=1,max=20,dive,max=16"`
}

// Apply merges the delta into a copy of the config and returns it.
func (d ConfigDelta) Apply(cfg TenantConfig) TenantConfig {
	if d.Prefix != nil {
		cfg.Prefix = *d.Prefix
	}
	if d.AutoType != nil {
		cfg.AutoType = *d.AutoType
	}
	if d.AutoRecord != nil {
		cfg.AutoRecord = *d.AutoRecord
	}
	if d.AntiCall != nil {
		cfg.AntiCall = *d.AntiCall
	}
	if d.AutoViewStatus != nil {
		cfg.AutoViewStatus = *d.AutoViewStatus
	}
	if d.AutoLikeStatus != nil {
		cfg.AutoLikeStatus = *d.AutoLikeStatus
	}
	if d.AutoStatusReply != nil {
		cfg.AutoStatusReply = *d.AutoStatusReply
	}
	if d.ReadReceipts != nil {
		cfg.ReadReceipts = *d.ReadReceipts
	}
	if d.RejectText != nil {
		cfg.RejectText = *d.RejectText
	}
	if d.StatusReply != nil {
		cfg.StatusReply = *d.StatusReply
	}
	if d.LikeEmojis != nil {
		cfg.LikeEmojis = *d.LikeEmojis
	}
	return cfg
}
