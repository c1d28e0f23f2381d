package conn

import "testing"

func TestOptionDSN(t *testing.T) {
	testCases := []struct {
		desc     string
		opt      Option
		expected string
	}{
		{
			"explicit dsn wins",
			Option{DSN: "postgres://u:p@db:5432/journal", Host: "ignored"},
			"postgres://u:p@db:5432/journal",
		},
		{
			"defaults",
			Option{},
			"postgres://localhost:5432?sslmode=disable",
		},
		{
			"full fields",
			Option{Host: "db", Port: 5433, User: "maker", Password: "secret", Database: "journal", SSLMode: "require"},
			"postgres://maker:secret@db:5433/journal?sslmode=require",
		},
		{
			"user without password",
			Option{User: "maker", Database: "journal"},
			"postgres://maker@localhost:5432/journal?sslmode=disable",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := tc.opt.dsn(); got != tc.expected {
				t.Fatalf("dsn mismatch: got %s want %s", got, tc.expected)
			}
		})
	}
}
