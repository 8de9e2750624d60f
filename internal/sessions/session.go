package sessions

import "time"

// PendingReturnTTL is how long a return waiting for its reason stays usable.
const PendingReturnTTL = 30 * 24 * time.Hour

// maxMessages bounds each thread so the item stays under DynamoDB's 400KB limit.
const maxMessages = 100

// maxThreads bounds how many cleared threads a session keeps, oldest dropped first.
const maxThreads = 20

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string    `dynamodbav:"ID" json:"id"`
	Role      Role      `dynamodbav:"Role" json:"role"`
	Content   string    `dynamodbav:"Content" json:"content"`
	Action    string    `dynamodbav:"Action,omitempty" json:"action,omitempty"`
	CreatedAt time.Time `dynamodbav:"CreatedAt" json:"created_at"`
}

type Thread struct {
	ID        string    `dynamodbav:"ID" json:"id"`
	Messages  []Message `dynamodbav:"Messages" json:"messages"`
	CreatedAt time.Time `dynamodbav:"CreatedAt" json:"created_at"`
}

// PendingReturn remembers a return that stopped to ask for a reason.
type PendingReturn struct {
	OrderNumber string    `dynamodbav:"OrderNumber" json:"order_number"`
	Email       string    `dynamodbav:"Email" json:"email"`
	CreatedAt   time.Time `dynamodbav:"CreatedAt" json:"created_at"`
}

func (p *PendingReturn) Stale(now time.Time) bool {
	return p == nil || now.Sub(p.CreatedAt) > PendingReturnTTL
}

// Session is one browser's conversation with the assistant.
// PK = SESSION#<id>
type Session struct {
	PK            string         `dynamodbav:"PK" json:"-"`
	ID            string         `dynamodbav:"ID" json:"id"`
	Shop          string         `dynamodbav:"Shop" json:"shop"`
	Threads       []Thread       `dynamodbav:"Threads" json:"threads"`
	WindowState   WindowState    `dynamodbav:"WindowState" json:"window_state"`
	WelcomeShown  bool           `dynamodbav:"WelcomeShown" json:"welcome_shown"`
	PendingReturn *PendingReturn `dynamodbav:"PendingReturn,omitempty" json:"pending_return,omitempty"`
	Version       int            `dynamodbav:"Version" json:"version"`
	CreatedAt     time.Time      `dynamodbav:"CreatedAt" json:"created_at"`
	UpdatedAt     time.Time      `dynamodbav:"UpdatedAt" json:"updated_at"`
	ExpiresAt     int64          `dynamodbav:"ExpiresAt" json:"-"`
}

// CurrentThread returns the newest thread; a session always has one.
func (s *Session) CurrentThread() *Thread {
	if len(s.Threads) == 0 {
		return nil
	}
	return &s.Threads[len(s.Threads)-1]
}

// ActivePendingReturn returns the pending return unless it has gone stale.
func (s *Session) ActivePendingReturn(now time.Time) *PendingReturn {
	if s.PendingReturn.Stale(now) {
		return nil
	}
	return s.PendingReturn
}
