package game

// Link delivers text to whoever is playing a character.
type Link interface {
	Send(text string) error
}

type offlineLink struct{}

func (offlineLink) Send(string) error {
	return nil
}

// Offline is the link of a character nobody is playing. Anything sent to it
// is dropped.
var Offline Link = offlineLink{}
