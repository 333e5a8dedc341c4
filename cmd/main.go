package main

import (
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/app"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
