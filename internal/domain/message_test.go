package domain

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDeriveKind(t *testing.T) {
	img := Attachment{Name: "a.png", MimeType: "image/png"}
	pdf := Attachment{Name: "b.pdf", MimeType: "application/pdf"}

	cases := []struct {
		name string
		body string
		atts []Attachment
		want Kind
	}{
		{"body only", "hi", nil, KindText},
		{"images no body", "", []Attachment{img, img}, KindImage},
		{"images whitespace body", "  ", []Attachment{img}, KindImage},
		{"images with body", "look", []Attachment{img}, KindMixed},
		{"file no body", "", []Attachment{pdf}, KindFile},
		{"file with body", "see attached", []Attachment{img, pdf}, KindFile},
		{"uppercase mime", "", []Attachment{{MimeType: "IMAGE/JPEG"}}, KindImage},
	}
	for _, tc := range cases {
		if got := DeriveKind(tc.body, tc.atts); got != tc.want {
			t.Errorf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestMessageReadByAndInvolves(t *testing.T) {
	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	m := &Message{SenderID: a, Receivers: []primitive.ObjectID{b}, ReadBy: []ReadReceipt{{UserID: b}}}

	if !m.ReadByUser(b) || m.ReadByUser(c) {
		t.Fatalf("unexpected read state")
	}
	if !m.Involves(a) || !m.Involves(b) || m.Involves(c) {
		t.Fatalf("unexpected involvement")
	}
}

func TestNotificationDefaults(t *testing.T) {
	n := Notification{Title: "x"}.WithDefaults()
	if n.Data["type"] != "generic" {
		t.Fatalf("expected generic type, got %q", n.Data["type"])
	}
	orig := map[string]string{"type": "meeting"}
	m := Notification{Title: "x", Data: orig}.WithDefaults()
	if m.Data["type"] != "meeting" {
		t.Fatalf("type overwritten: %q", m.Data["type"])
	}
	m.Data["extra"] = "1"
	if _, ok := orig["extra"]; ok {
		t.Fatalf("defaults must not mutate caller map")
	}
}

func TestRoleIsPrivileged(t *testing.T) {
	if !RoleSuperAdmin.IsPrivileged() || !Role("super_admin").IsPrivileged() {
		t.Fatalf("super admin should be privileged")
	}
	if RoleAdmin.IsPrivileged() || RoleClient.IsPrivileged() {
		t.Fatalf("only super admin is privileged")
	}
}
