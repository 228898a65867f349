package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopperClosesOnce(t *testing.T) {
	done, stop := newStopper()

	// таймер длительности и Ctrl-C могут сработать оба
	assert.NotPanics(t, func() {
		stop()
		stop()
	})

	select {
	case <-done:
	default:
		t.Fatal("done is not closed")
	}
}

func TestBuildClientsFromTokens(t *testing.T) {
	clients, err := buildClients(Config{Tokens: "1:abc, 2:def"})
	assert.NoError(t, err)
	assert.Equal(t, []client{{userID: 1, token: "abc"}, {userID: 2, token: "def"}}, clients)

	_, err = buildClients(Config{Tokens: "broken"})
	assert.Error(t, err)
	_, err = buildClients(Config{})
	assert.Error(t, err)
}
