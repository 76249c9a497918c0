// Package config provides configuration parsing for the filterd server.
//
// The configuration is stored in filterd.json. It names the listen address
// and declares the filters every session binds to the URL.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "addr": ":3000",
//	    "metricsPath": "/metrics",
//	    "allowedOrigins": ["https://shop.example.com"]
//	  },
//	  "filters": [
//	    {"name": "q", "type": "string", "mode": "replace", "delay": "300ms"},
//	    {"name": "minPrice", "type": "int", "default": 0},
//	    {"name": "tags", "type": "list", "default": []},
//	    {"name": "sort", "type": "string", "default": "relevance", "remove": "relevance"},
//	    {"name": "inStock", "type": "bool"}
//	  ]
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Server.Addr)
package config
