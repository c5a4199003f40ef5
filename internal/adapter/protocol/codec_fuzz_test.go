package protocol

import (
	"testing"
)

func FuzzDecode(f *testing.F) {
	f.Add(`{"tag":"StatusChanged","status":{"tag":"AlreadyUpToDate"}}`)
	f.Add(`{"tag":"StatusChanged","status":{"tag":"Busy","compilationMode":"debug"}}`)
	f.Add(`{"tag":"SuccessfullyCompiled","code":"x","compilationMode":"standard","compiledTimestamp":1}`)
	f.Add(`{"tag":"StatusChanged","status":null}`)
	f.Add(`[]`)
	f.Add(`null`)
	f.Add(`invalid json`)

	f.Fuzz(func(t *testing.T, input string) {
		// Exactly one of msg and err is set.
		msg, err := Decode([]byte(input))
		if (msg == nil) == (err == nil) {
			t.Fatalf("Decode(%q) = %v, %v", input, msg, err)
		}
	})
}
