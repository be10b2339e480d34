package messaging

// Publisher sends raw messages to a subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnSubject is the subject a connection receives its output on.
func ConnSubject(connID string) string {
	return "conn-" + connID
}

// Link delivers text to one connection by publishing on its subject.
type Link struct {
	pub    Publisher
	connID string
}

func NewLink(pub Publisher, connID string) *Link {
	return &Link{pub: pub, connID: connID}
}

func (l *Link) ConnID() string {
	return l.connID
}

func (l *Link) Send(text string) error {
	return l.pub.Publish(ConnSubject(l.connID), []byte(text))
}
