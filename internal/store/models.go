package store

import "time"

// File processing statuses
const (
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusError      = "error"
)

// Content types for sentiment analysis
const (
	ContentTypeConversation = "conversation"
	ContentTypeEmail        = "email"
)

// Classification methods
const (
	MethodLocal  = "local"
	MethodRemote = "remote"
)

// Sentiment labels
const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// Alert statuses
const (
	AlertPending      = "pending"
	AlertAcknowledged = "acknowledged"
	AlertResolved     = "resolved"
)

// Alert severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ProcessedFile is one row of the change ledger
type ProcessedFile struct {
	ID               int64
	Path             string
	ContentHash      string
	FileKind         string
	Status           string
	RecordsProcessed int
	ErrorMessage     string
	ProcessedAt      time.Time
}

// Client is a known client and its primary contact
type Client struct {
	ID           int64
	Name         string
	ContactName  string
	ContactEmail string
}

// ClientMetrics is one metric snapshot row for a client
type ClientMetrics struct {
	ClientID     int64
	MetricDate   string
	Escalations  int
	SupportScore float64
	Backlog      int
	Delivered    int
	ResponseDays float64
}

// MaxAnalysisAttempts is how often classification of one content unit is
// retried before the item is abandoned and stops occupying the batch window
const MaxAnalysisAttempts = 5

// Conversation is a single conversation turn awaiting or past analysis.
// Source and LineHash form the natural key for file-imported turns; both
// stay empty for turns created any other way.
type Conversation struct {
	ID               int64
	ClientID         *int64
	Body             string
	Source           string
	LineHash         string
	OccurredAt       time.Time
	Analyzed         bool
	AnalysisAttempts int
}

// Email is an ingested mailbox message
type Email struct {
	ID         int64
	MessageID  string
	Account    string
	ClientID   *int64
	Subject    string
	Body       string
	Sender     string
	Recipient  string
	ReceivedAt time.Time
	Processed  bool

	AnalysisAttempts int
}

// SentimentAnalysis is the classification result for one content unit
type SentimentAnalysis struct {
	ID          int64
	ContentID   int64
	ContentType string
	Score       float64
	Label       string
	Confidence  float64
	Method      string
	KeyPhrases  []string
	ClusterID   *int64
	CreatedAt   time.Time
}

// Alert is a client risk alert
type Alert struct {
	ID              string
	ClientID        int64
	TriggerType     string
	Description     string
	Severity        string
	Status          string
	DetectedAt      time.Time
	ResolvedAt      *time.Time
	AnalysisPayload string
	DataSnapshot    string
}

// EmailNotification is one row of the notification audit trail
type EmailNotification struct {
	ID        int64
	AlertID   string
	Subject   string
	Recipient string
	Body      string
	Status    string
	SentAt    time.Time
}
