// Package page reads the fixed-size pages that make up the body of a
// sas7bdat file following its leading header, and classifies each
// page's type and subheader/block counts from the width-dependent page
// header embedded at the front of every page.
package page
