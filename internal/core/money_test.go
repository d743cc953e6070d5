package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half away from zero
		{" 2.50 ", 250, true},
		{"-4.20", -420, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents() != tc.cents {
				t.Fatalf("%q expected %d cents, got %d (err=%v)", tc.in, tc.cents, got.Cents(), err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%q expected invalid argument, got %v", tc.in, err)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	cases := []struct {
		m    Money
		want string
	}{
		{MustMoney("800"), "800"},
		{MustMoney("12.5"), "12.5"},
		{MustMoney("33.333333"), "33.33"},
		{Zero, "0"},
		{MoneyFromCents(-1999), "-19.99"},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.m)
		if err != nil {
			t.Fatalf("marshal %v: %v", tc.m, err)
		}
		if string(b) != tc.want {
			t.Fatalf("marshal %v: want %s, got %s", tc.m, tc.want, b)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"42.10"`), &m); err != nil || m.Cents() != 4210 {
		t.Fatalf("unmarshal string: %v %v", m, err)
	}
	if err := json.Unmarshal([]byte(`42.1`), &m); err != nil || m.Cents() != 4210 {
		t.Fatalf("unmarshal number: %v %v", m, err)
	}
	if err := json.Unmarshal([]byte(`"nope"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestMoneyArithmeticKeepsPrecision(t *testing.T) {
	third := NewMoney(MustMoney("1").Decimal().Div(MustMoney("3").Decimal()))
	sum := third.Add(third).Add(third)
	if sum.String() != "1.00" {
		t.Fatalf("expected 1.00, got %s", sum)
	}
	if MustMoney("10").Sub(MustMoney("12.5")).Abs().String() != "2.50" {
		t.Fatalf("unexpected abs result")
	}
}

func TestMoneyWithinLimit(t *testing.T) {
	cases := []struct {
		m    Money
		want bool
	}{
		{MaxAmount, true},
		{MustMoney("-1000000000"), true},
		{MustMoney("1000000000.004"), true}, // rounds down to the cap
		{MustMoney("1000000000.01"), false},
		{MustMoney("100000000000000000"), false},
	}
	for _, tc := range cases {
		if got := tc.m.WithinLimit(); got != tc.want {
			t.Fatalf("%s: want %v, got %v", tc.m, tc.want, got)
		}
	}
	if MaxAmount.Cents() != 100000000000 {
		t.Fatalf("unexpected cap in cents: %d", MaxAmount.Cents())
	}
}
