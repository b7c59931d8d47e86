package pii_test

import (
	"fmt"

	"github.com/jonwraymond/tylolens/pii"
)

func ExampleRedact() {
	fmt.Println(pii.Redact("Contact me at demo@example.com", pii.ModeMask))
	// Output:
	// Contact me at [REDACTED:email]
}

func ExampleScan() {
	findings := pii.Scan("Contact me at demo@example.com")
	for _, f := range findings {
		fmt.Println(f.Type, f.Count)
	}
	fmt.Println(pii.Risk(findings))
	// Output:
	// email 1
	// medium
}
