package amqp

import "testing"

func TestSanitizeQueueSuffix(t *testing.T) {
	cases := map[string]string{
		"agent.task":   "agent.task",
		"agent.*":      "agent._",
		"agent.#":      "agent.~",
		"agent.*.done": "agent._.done",
	}

	for pattern, want := range cases {
		if got := sanitizeQueueSuffix(pattern); got != want {
			t.Errorf("sanitizeQueueSuffix(%q) = %q, want %q", pattern, got, want)
		}
	}
}
