package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           hubd API
// @version         1.0
// @description     HTTP API for model repository resolution, download and backend selection.
//
// @contact.name   hubd maintainers
// @contact.url    https://github.com/your-org/hubd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
