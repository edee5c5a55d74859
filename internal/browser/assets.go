package browser

import _ "embed"

//go:embed assets/aegis-interceptor.js
var InterceptorScript []byte
