package model

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var testUSDC = Asset{
	Address:  common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"),
	Symbol:   "USDC",
	Decimals: 6,
}

func TestParseAmountExact(t *testing.T) {
	cases := map[string]string{
		"1":          "1000000",
		"1.5":        "1500000",
		"0.000001":   "1",
		"  42.0  ":   "42000000",
		"0":          "0",
		"1234567.89": "1234567890000",
	}
	for typed, want := range cases {
		got, err := ParseAmount(testUSDC, typed)
		if err != nil {
			t.Fatalf("parse %q: %v", typed, err)
		}
		if got.Raw.String() != want {
			t.Fatalf("parse %q: got %s want %s", typed, got.Raw, want)
		}
	}
}

func TestParseAmountEighteenDecimals(t *testing.T) {
	weth := Asset{Symbol: "WETH", Decimals: 18}
	got, err := ParseAmount(weth, "123456789.123456789123456789")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Raw.String() != "123456789123456789123456789" {
		t.Fatalf("unexpected raw: %s", got.Raw)
	}
}

func TestParseAmountBlank(t *testing.T) {
	got, err := ParseAmount(testUSDC, "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil amount for blank input")
	}
}

func TestParseAmountMalformed(t *testing.T) {
	for _, typed := range []string{"abc", "1.0000001", "-1", "1e6", "1,5", "+1"} {
		if _, err := ParseAmount(testUSDC, typed); !errors.Is(err, ErrMalformedAmount) {
			t.Fatalf("parse %q: expected ErrMalformedAmount, got %v", typed, err)
		}
	}
}

func TestAmountSignificant(t *testing.T) {
	amount := NewAmount(testUSDC, big.NewInt(1_234_567_891))
	if got := amount.Significant(6); got != "1234.57" {
		t.Fatalf("significant: %s", got)
	}
	if got := amount.Exact(); got != "1234.567891" {
		t.Fatalf("exact: %s", got)
	}
	if got := ZeroAmount(testUSDC).Significant(6); got != "0" {
		t.Fatalf("zero: %s", got)
	}
}

func TestMaxAmountSpend(t *testing.T) {
	eth := NativeAsset("ETH")
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	got := MaxAmountSpend(NewAmount(eth, oneEth))
	want := new(big.Int).Sub(oneEth, nativeGasReserve)
	if got.Raw.Cmp(want) != 0 {
		t.Fatalf("native max: got %s want %s", got.Raw, want)
	}

	if !MaxAmountSpend(NewAmount(eth, big.NewInt(1000))).IsZero() {
		t.Fatalf("dust native balance should be unspendable")
	}

	token := NewAmount(testUSDC, big.NewInt(5))
	if MaxAmountSpend(token).Cmp(token) != 0 {
		t.Fatalf("token balance should be fully spendable")
	}
}

func TestAmountJSONStringFields(t *testing.T) {
	raw, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	data, err := json.Marshal(NewAmount(testUSDC, raw))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["raw"] != raw.String() {
		t.Fatalf("raw should survive as string, got %v", decoded["raw"])
	}
	if decoded["asset"] != "USDC" {
		t.Fatalf("asset symbol mismatch: %v", decoded["asset"])
	}
}
