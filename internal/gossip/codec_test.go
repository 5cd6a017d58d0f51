package gossip

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/epidemic-mesh/epidemic/internal/domain"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	sender := uuid.New()
	addr := mustAddrPort(t, "127.0.0.1:7946")

	msg := Message{
		Sender:     sender,
		ClusterKey: []byte("epidemic"),
		Request:    Request{Kind: RequestPing},
		StateChanges: []domain.StateChange{
			domain.NewStateChange(domain.Member{HostKey: uuid.New(), RemoteHost: addr, State: domain.Alive}),
		},
	}

	encoded, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Sender != sender {
		t.Errorf("Sender = %v, want %v", decoded.Sender, sender)
	}
	if decoded.Request.Kind != RequestPing {
		t.Errorf("Request.Kind = %v, want RequestPing", decoded.Request.Kind)
	}
	if len(decoded.StateChanges) != 1 {
		t.Fatalf("len(StateChanges) = %d, want 1", len(decoded.StateChanges))
	}
}

func TestDecode_MalformedReturnsError(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Error("Decode on malformed input returned nil error")
	}
}

func TestRequestKind_String(t *testing.T) {
	cases := map[RequestKind]string{
		RequestPing:        "ping",
		RequestAck:         "ack",
		RequestPingRequest: "ping_request",
		RequestAckHost:     "ack_host",
		RequestKind(99):    "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("RequestKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestBuildMessage_FitsWithoutTruncation(t *testing.T) {
	sender := uuid.New()
	changes := []domain.StateChange{
		domain.NewStateChange(domain.Member{HostKey: uuid.New(), State: domain.Alive}),
	}

	msg, ok := BuildMessage(sender, []byte("epidemic"), Request{Kind: RequestPing}, changes, 1400)
	if !ok {
		t.Fatal("BuildMessage returned ok=false for a digest that should fit")
	}
	if len(msg.StateChanges) != 1 {
		t.Errorf("len(StateChanges) = %d, want 1 (no truncation expected)", len(msg.StateChanges))
	}
}

func TestBuildMessage_TruncatesToFitMTU(t *testing.T) {
	sender := uuid.New()
	var changes []domain.StateChange
	for i := 0; i < 200; i++ {
		changes = append(changes, domain.NewStateChange(domain.Member{
			HostKey:         uuid.New(),
			RemoteHost:      mustAddrPort(t, "127.0.0.1:7946"),
			State:           domain.Alive,
			LastStateChange: time.Now(),
		}))
	}

	msg, ok := BuildMessage(sender, []byte("epidemic"), Request{Kind: RequestPing}, changes, 512)
	if !ok {
		t.Fatal("BuildMessage returned ok=false; expected a truncated-but-nonempty digest to fit")
	}
	if len(msg.StateChanges) >= len(changes) {
		t.Errorf("expected truncation: got %d state changes out of %d", len(msg.StateChanges), len(changes))
	}

	encoded, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) >= 512 {
		t.Errorf("encoded length %d >= mtu 512", len(encoded))
	}
}

func TestBuildMessage_FailsWhenEvenEmptyDigestOverflows(t *testing.T) {
	sender := uuid.New()
	_, ok := BuildMessage(sender, []byte("epidemic"), Request{Kind: RequestPing}, nil, 1)
	if ok {
		t.Error("BuildMessage returned ok=true for an mtu too small for even the empty digest")
	}
}

func TestBuildMessage_PingRequestCarriesTarget(t *testing.T) {
	sender := uuid.New()
	target := mustAddrPort(t, "127.0.0.1:7948")
	req := Request{Kind: RequestPingRequest, PingRequestTarget: target}

	msg, ok := BuildMessage(sender, []byte("epidemic"), req, nil, 1400)
	if !ok {
		t.Fatal("BuildMessage returned ok=false")
	}

	encoded, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Request.PingRequestTarget != target {
		t.Errorf("PingRequestTarget = %v, want %v", decoded.Request.PingRequestTarget, target)
	}
}

func TestBuildMessage_AckHostCarriesMember(t *testing.T) {
	sender := uuid.New()
	member := domain.Member{HostKey: uuid.New(), RemoteHost: mustAddrPort(t, "127.0.0.1:7949"), State: domain.Alive}
	req := Request{Kind: RequestAckHost, AckHostMember: &member}

	msg, ok := BuildMessage(sender, []byte("epidemic"), req, nil, 1400)
	if !ok {
		t.Fatal("BuildMessage returned ok=false")
	}

	encoded, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Request.AckHostMember == nil {
		t.Fatal("AckHostMember is nil after round trip")
	}
	if decoded.Request.AckHostMember.HostKey != member.HostKey {
		t.Errorf("AckHostMember.HostKey = %v, want %v", decoded.Request.AckHostMember.HostKey, member.HostKey)
	}
}

func TestMessage_ClusterKeyDemux(t *testing.T) {
	sender := uuid.New()
	msg, ok := BuildMessage(sender, []byte("cluster-a"), Request{Kind: RequestPing}, nil, 1400)
	if !ok {
		t.Fatal("BuildMessage returned ok=false")
	}
	if string(msg.ClusterKey) != "cluster-a" {
		t.Errorf("ClusterKey = %q, want %q", msg.ClusterKey, "cluster-a")
	}
}
