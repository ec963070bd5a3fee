package cmd

import "testing"

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":8080", false},
		{"localhost:8080", false},
		{"127.0.0.1:3400", false},
		{"0.0.0.0:80", false},
		{"8080", true},
		{"localhost:notaport", true},
		{"localhost:0", true},
		{"localhost:70000", true},
		{"bad host:8080", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}
