package lsh

import "testing"

func TestParameterValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Parameter
		wantErr bool
	}{
		{"valid", Parameter{M: 64, L: 4, D: 8, N: 4, S: 16}, false},
		{"zero L", Parameter{M: 64, L: 0, D: 8, N: 4, S: 16}, true},
		{"zero D", Parameter{M: 64, L: 4, D: 0, N: 4, S: 16}, true},
		{"zero N", Parameter{M: 64, L: 4, D: 8, N: 0, S: 16}, true},
		{"N too large", Parameter{M: 64, L: 4, D: 8, N: 65, S: 16}, true},
		{"N exceeds D", Parameter{M: 64, L: 4, D: 4, N: 8, S: 16}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
