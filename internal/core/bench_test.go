package core

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkDirectFanOut(b *testing.B, devices int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	presence := NewPresence()
	router := NewRouter(newMemStore("sender", "receiver"), nil, presence, nil, nil)

	// Drain every device but the first to avoid channel backpressure.
	var target *Client
	for i := range devices {
		c := NewClient(fmt.Sprintf("d%d", i))
		if err := presence.Join(c, "receiver"); err != nil {
			b.Fatal(err)
		}
		if i == 0 {
			target = c
			continue
		}
		go func(cl *Client) {
			for {
				select {
				case <-cl.Events:
				case <-ctx.Done():
					return
				}
			}
		}(c)
	}

	msg := Message{Sender: "sender", Receiver: "receiver", Text: "payload"}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := router.Deliver(ctx, msg); err != nil {
			b.Fatal(err)
		}
		<-target.Events
	}
}

func BenchmarkDirectFanOut_1(b *testing.B)  { benchmarkDirectFanOut(b, 1) }
func BenchmarkDirectFanOut_10(b *testing.B) { benchmarkDirectFanOut(b, 10) }
func BenchmarkDirectFanOut_50(b *testing.B) { benchmarkDirectFanOut(b, 50) }
